package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func newLocalServer(t *testing.T, handler http.Handler) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return "http://" + ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func TestSendNotConfigured(t *testing.T) {
	p := NewPushover("", "")
	if err := p.Send(context.Background(), "t", "m"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if p.Configured() {
		t.Fatal("Configured() = true for empty credentials")
	}
}

func TestSendPostsForm(t *testing.T) {
	var got map[string]string
	url, stop := newLocalServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = map[string]string{
			"token":   r.PostFormValue("token"),
			"user":    r.PostFormValue("user"),
			"title":   r.PostFormValue("title"),
			"message": r.PostFormValue("message"),
		}
		fmt.Fprint(w, `{"status":1}`)
	}))
	defer stop()

	p := NewPushover("tok", "usr")
	p.endpoint = url
	if err := p.Send(context.Background(), "Emfit Anomaly Alert", "bad night"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["token"] != "tok" || got["user"] != "usr" {
		t.Fatalf("credentials = %v", got)
	}
	if got["title"] != "Emfit Anomaly Alert" || got["message"] != "bad night" {
		t.Fatalf("payload = %v", got)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	url, stop := newLocalServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":0,"errors":["application token is invalid"]}`, http.StatusBadRequest)
	}))
	defer stop()

	p := NewPushover("bad", "usr")
	p.endpoint = url
	if err := p.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("Send succeeded against a failing API")
	}
}
