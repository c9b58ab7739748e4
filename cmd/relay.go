// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mtmn/plants-go/pkg/output"
	"github.com/mtmn/plants-go/pkg/status"
)

var (
	relayListen string
	relayAuth   string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Republish rendered status over HTTP and WebSocket",
	Long: `Republish rendered status over HTTP and WebSocket.

Subscribes to the daemon and serves the rendered waybar JSON to remote
consumers:

  GET /     the latest rendered line
  GET /ws   a WebSocket pushing one line per daemon update

With --auth USER or --auth USER:PASS both endpoints require HTTP Basic
authentication. When the password is omitted it is read from the
PLANTS_PASSWORD environment variable, or prompted for without echo.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", "127.0.0.1:8205", "Listen address")
	relayCmd.Flags().StringVar(&relayAuth, "auth", "", "Require basic auth as USER or USER:PASS")
	rootCmd.AddCommand(relayCmd)
}

// relay fans each rendered update out to the HTTP handler and every
// connected WebSocket client.
type relay struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	latest  output.Output
	clients map[*websocket.Conn]chan output.Output

	user, pass string

	upgrader websocket.Upgrader
}

func runRelay(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	r := &relay{
		log:     log.WithField("component", "relay"),
		latest:  output.NotConnected(),
		clients: make(map[*websocket.Conn]chan output.Output),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if relayAuth != "" {
		r.user, r.pass, err = resolveAuth(relayAuth)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, initial, reachable, err := attach(ctx)
	if err != nil {
		return err
	}
	if reachable {
		r.setLatest(initial)
	}

	go func() {
		for {
			select {
			case s, ok := <-sub.Updates:
				if !ok {
					return
				}
				r.setLatest(s)
			case <-sub.Vanished:
				r.setOutput(output.NotConnected())
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", r.handleLatest)
	mux.HandleFunc("/ws", r.handleWS)

	server := &http.Server{Addr: relayListen, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.WithField("listen", relayListen).Info("relay listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// resolveAuth splits USER[:PASS], sourcing a missing password from the
// environment or an interactive no-echo prompt.
func resolveAuth(spec string) (user, pass string, err error) {
	user, pass, ok := strings.Cut(spec, ":")
	if ok {
		return user, pass, nil
	}
	if pw := os.Getenv("PLANTS_PASSWORD"); pw != "" {
		return user, pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	pwBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		// Not a terminal; fall back to a plain read.
		line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil {
			return "", "", fmt.Errorf("read password: %w", rerr)
		}
		return user, strings.TrimSpace(line), nil
	}
	return user, string(pwBytes), nil
}

func (r *relay) authorized(req *http.Request) bool {
	if r.user == "" {
		return true
	}
	user, pass, ok := req.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(r.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(r.pass)) == 1
	return userOK && passOK
}

func (r *relay) setLatest(s status.Status) {
	r.setOutput(output.FromStatus(s))
}

func (r *relay) setOutput(out output.Output) {
	r.mu.Lock()
	r.latest = out
	for _, ch := range r.clients {
		select {
		case ch <- out:
		default:
			// Slow client; it will catch up on the next update.
		}
	}
	r.mu.Unlock()
}

func (r *relay) handleLatest(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if !r.authorized(req) {
		w.Header().Set("WWW-Authenticate", `Basic realm="plants"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.mu.Lock()
	out := r.latest
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, out)
}

func (r *relay) handleWS(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(req) {
		w.Header().Set("WWW-Authenticate", `Basic realm="plants"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	ch := make(chan output.Output, 4)
	r.mu.Lock()
	r.clients[conn] = ch
	out := r.latest
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.clients, conn)
		r.mu.Unlock()
		conn.Close()
	}()

	// Drain inbound frames so close and ping handling keep working;
	// the read error on disconnect releases the writer below.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(out.String())); err != nil {
		return
	}
	for {
		select {
		case out := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(out.String())); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
