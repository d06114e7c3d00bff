package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/docker/go-connections/tlsconfig"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// ServerOptions configure Serve.
type ServerOptions struct {
	Listen         string
	MaxConnections int // 0 means unlimited

	// TLS is enabled when CertFile and KeyFile are set. Setting CAFile
	// additionally requires client certificates signed by that CA.
	CertFile string
	KeyFile  string
	CAFile   string

	// Ready, if set, receives the bound address once the listener is up.
	Ready func(addr net.Addr)
}

// TLSConfig builds the server TLS configuration, or nil when TLS is off.
func (o ServerOptions) TLSConfig() (*tls.Config, error) {
	if o.CertFile == "" && o.KeyFile == "" {
		return nil, nil
	}
	if o.CertFile == "" || o.KeyFile == "" {
		return nil, fmt.Errorf("both cert_file and key_file are required for TLS")
	}
	opts := tlsconfig.Options{
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
		CAFile:   o.CAFile,
	}
	if o.CAFile != "" {
		opts.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsconfig.Server(opts)
}

// Serve runs handler until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, opts ServerOptions, handler http.Handler) error {
	tlsCfg, err := opts.TLSConfig()
	if err != nil {
		return fmt.Errorf("configuring TLS: %w", err)
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", opts.Listen, err)
	}
	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", tlsCfg != nil))
	if opts.Ready != nil {
		opts.Ready(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
