package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// callbackResult is what the authorization redirect delivered: either a
// code+state pair or an error parameter.
type callbackResult struct {
	code     string
	state    string
	errParam string
}

// callbackServer is a single-use local HTTP listener that captures the
// OAuth2 authorization redirect. The first captured result is handed to the
// waiting flow over a channel; the server never logs request contents.
type callbackServer struct {
	srv    *http.Server
	result chan callbackResult
}

func newCallbackServer(port int) *callbackServer {
	cs := &callbackServer{result: make(chan callbackResult, 1)}
	router := mux.NewRouter()
	router.HandleFunc("/callback", cs.handleCallback).Methods(http.MethodGet)
	cs.srv = &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: router,
	}
	return cs
}

// start binds the listener synchronously so port conflicts surface to the
// caller, then serves in the background.
func (cs *callbackServer) start() error {
	ln, err := net.Listen("tcp", cs.srv.Addr)
	if err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}
	go func() {
		_ = cs.srv.Serve(ln)
	}()
	return nil
}

// shutdown tears the listener down. Safe to call on every exit path.
func (cs *callbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.srv.Shutdown(ctx)
}

func (cs *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	switch {
	case query.Get("error") != "":
		cs.deliver(callbackResult{errParam: query.Get("error")})
		writeCallbackPage(w, http.StatusOK, "Authorization denied. You can close this window.")
	case query.Get("code") != "":
		cs.deliver(callbackResult{code: query.Get("code"), state: query.Get("state")})
		writeCallbackPage(w, http.StatusOK, "Authorization successful! You can close this window.")
	default:
		writeCallbackPage(w, http.StatusBadRequest, "Invalid callback. Missing code parameter.")
	}
}

// deliver hands over the first result; later requests are answered but
// ignored.
func (cs *callbackServer) deliver(res callbackResult) {
	select {
	case cs.result <- res:
	default:
	}
}

func writeCallbackPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body><h1>%s</h1></body></html>", message)
}
