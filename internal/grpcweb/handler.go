// Package grpcweb serves browsers: gRPC-Web calls over HTTP/1.1, a small REST
// surface that keeps the refresh token in an HttpOnly cookie, and /healthz.
// Calls are dispatched in-process through the ClinicService descriptor and the
// same interceptor chain as the gRPC server.
package grpcweb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/rpc"
)

const (
	contentType   = "application/grpc-web+json"
	refreshCookie = "tabib_refresh"
	maxBody       = 1 << 20
)

type Options struct {
	// AllowedOrigins limits CORS; empty allows any origin.
	AllowedOrigins []string
	SecureCookies  bool
	Logger         *zap.Logger
}

// Bridge translates browser requests into ClinicService calls.
type Bridge struct {
	srv     rpc.ClinicServiceServer
	chain   grpc.UnaryServerInterceptor
	origins map[string]bool
	secure  bool
	log     *zap.Logger
}

// New builds a bridge over srv. interceptors run in order, outermost first.
func New(srv rpc.ClinicServiceServer, interceptors []grpc.UnaryServerInterceptor, opts Options) *Bridge {
	b := &Bridge{
		srv:     srv,
		chain:   middleware.Chain(interceptors...),
		origins: map[string]bool{},
		secure:  opts.SecureCookies,
		log:     opts.Logger,
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	for _, o := range opts.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			b.origins[o] = true
		}
	}
	return b
}

// Handler returns the routes: gRPC-Web under /tabibdesk.v1.ClinicService/,
// REST auth under /auth/ and /healthz.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/auth/login", b.rest(b.login))
	mux.HandleFunc("/auth/refresh", b.rest(b.refresh))
	mux.HandleFunc("/auth/logout", b.rest(b.logout))
	mux.HandleFunc("/"+rpc.ServiceName+"/", b.grpcWeb)
	return mux
}

// cors writes the CORS headers and reports whether the origin may call.
func (b *Bridge) cors(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(b.origins) > 0 && !b.origins[origin] {
		return false
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers",
		"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, x-grpc-web")
	h.Set("Access-Control-Expose-Headers",
		"Grpc-Status, Grpc-Message, grpc-status, grpc-message")
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")
	return true
}

// incoming builds the server-side context a gRPC transport would: the
// Authorization header as metadata and the client address as peer.
func incoming(r *http.Request) context.Context {
	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	ctx := metadata.NewIncomingContext(r.Context(), md)
	return peer.NewContext(ctx, &peer.Peer{Addr: remoteAddr(r.RemoteAddr)})
}

type remoteAddr string

func (remoteAddr) Network() string  { return "tcp" }
func (a remoteAddr) String() string { return string(a) }

// call runs a method through the interceptor chain. decode fills the request.
func (b *Bridge) call(ctx context.Context, fullMethod string, decode func(any) error) (any, error) {
	desc, ok := rpc.Lookup(fullMethod)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "unknown method")
	}
	dec := func(v any) error {
		if err := decode(v); err != nil {
			return status.Error(codes.InvalidArgument, "bad request body")
		}
		return nil
	}
	return desc.Handler(b.srv, ctx, dec, b.chain)
}

// ----- grpc-web -----

func (b *Bridge) grpcWeb(w http.ResponseWriter, r *http.Request) {
	if !b.cors(w, r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
		http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, codes.InvalidArgument, "read body failed")
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return
	}

	resp, err := b.call(incoming(r), r.URL.Path, func(v any) error {
		return rpc.Codec{}.Unmarshal(payload, v)
	})
	if err != nil {
		st := status.Convert(err)
		writeError(w, st.Code(), st.Message())
		return
	}
	out, err := rpc.Codec{}.Marshal(resp)
	if err != nil {
		b.log.Error("grpc-web encode", zap.String("method", r.URL.Path), zap.Error(err))
		writeError(w, codes.Internal, "internal error")
		return
	}
	writeSuccess(w, out)
}

// grpc-web frame: 1-byte flag + 4-byte big-endian length + message
func unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, errors.New("body too short")
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if int(n)+5 > len(body) {
		return nil, errors.New("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	return f
}

func trailer(code codes.Code, msg string) []byte {
	t := fmt.Sprintf("grpc-status:%d\r\n", code)
	if msg != "" {
		t += "grpc-message:" + strings.NewReplacer("\r", " ", "\n", " ").Replace(msg) + "\r\n"
	}
	return frame(0x80, []byte(t))
}

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trailer(code, msg))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(0x00, data))
	_, _ = w.Write(trailer(codes.OK, ""))
}

// ----- rest auth -----

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rest wraps a JSON auth route with CORS and method checks.
func (b *Bridge) rest(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.cors(w, r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := fn(w, r); err != nil {
			code := apperr.HTTPStatus(err)
			if status.Code(err) == codes.ResourceExhausted {
				code = http.StatusTooManyRequests
			}
			writeJSON(w, code, errorBody{
				Code:    status.Code(err).String(),
				Message: status.Convert(err).Message(),
			})
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request) func(any) error {
	return func(dst any) error {
		if r.ContentLength == 0 {
			return nil
		}
		return json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(dst)
	}
}

// issue answers a login or refresh: the refresh token goes into the cookie
// only.
func (b *Bridge) issue(w http.ResponseWriter, resp any) error {
	ar, ok := resp.(*rpc.AuthResponse)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    ar.RefreshToken,
		Path:     "/auth",
		Expires:  ar.RefreshExpiresAt.AsTime(),
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteStrictMode,
	})
	out := *ar
	out.RefreshToken = ""
	writeJSON(w, http.StatusOK, &out)
	return nil
}

func (b *Bridge) login(w http.ResponseWriter, r *http.Request) error {
	resp, err := b.call(incoming(r), rpc.FullMethod("Login"), readJSON(r))
	if err != nil {
		return err
	}
	return b.issue(w, resp)
}

// refreshToken prefers the cookie and falls back to a JSON body.
func refreshToken(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body rpc.RefreshRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&body)
	}
	return body.RefreshToken
}

func (b *Bridge) refresh(w http.ResponseWriter, r *http.Request) error {
	tok := refreshToken(r)
	resp, err := b.call(incoming(r), rpc.FullMethod("Refresh"), func(v any) error {
		v.(*rpc.RefreshRequest).RefreshToken = tok
		return nil
	})
	if err != nil {
		b.clearCookie(w)
		return err
	}
	return b.issue(w, resp)
}

func (b *Bridge) logout(w http.ResponseWriter, r *http.Request) error {
	tok := refreshToken(r)
	_, err := b.call(incoming(r), rpc.FullMethod("Logout"), func(v any) error {
		v.(*rpc.LogoutRequest).RefreshToken = tok
		return nil
	})
	b.clearCookie(w)
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (b *Bridge) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/auth",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
