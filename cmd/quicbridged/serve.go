package main

import (
	"crypto/tls"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quicbridge/engine/h3mux"
	"github.com/quicbridge/engine/metrics"
	"github.com/quicbridge/engine/quicsrv"
	"github.com/quicbridge/engine/quictls"
	"github.com/quicbridge/engine/registry"
	"github.com/quicbridge/engine/transport"
)

var serveFlags struct {
	addr string
	metricsAddr string
	certFile string
	keyFile string
	idleTimeout time.Duration
	retryTTL time.Duration
	logLevel string
}

// ServeCmd runs a listener, grounded on cmd/quince serve
// path but built on cobra/pflag rather than stdlib flag (
// the distribution-distribution pack contributes the cobra pattern this
// binary follows).
var ServeCmd = &cobra.Command{
	Use: "serve",
	Short: "listen for QUIC connections and serve the HTTP framing mux",
	RunE: runServe,
}

func init() {
	var f *pflag.FlagSet = ServeCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", ":4433", "UDP address to listen on")
	f.StringVar(&serveFlags.metricsAddr, "metrics-addr", ":9433", "address to serve /metrics on")
	f.StringVar(&serveFlags.certFile, "cert", "", "TLS certificate file (required)")
	f.StringVar(&serveFlags.keyFile, "key", "", "TLS private key file (required)")
	f.DurationVar(&serveFlags.idleTimeout, "idle-timeout", 30*time.Second, "max idle time before a connection is closed")
	f.DurationVar(&serveFlags.retryTTL, "retry-token-ttl", 10*time.Second, "validity window for stateless Retry tokens")
	f.StringVar(&serveFlags.logLevel, "log-level", "info", "zerolog level: trace, debug, info, warn, error")
	ServeCmd.MarkFlagRequired("cert")
	ServeCmd.MarkFlagRequired("key")
}

func runServe(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(serveFlags.logLevel)
	if err != nil {
		return err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cert, err := tls.LoadX509KeyPair(serveFlags.certFile, serveFlags.keyFile)
	if err != nil {
		return err
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"qbridge/1"}}

	retryValidator, err := registry.NewRetryValidator(serveFlags.retryTTL)
	if err != nil {
		return err
	}

	counters := metrics.NewEventCounters(prometheus.DefaultRegisterer)

	srvCfg := &quicsrv.Config{
		Transport: transport.Config{
			Version: 1,
			Params: transport.DefaultParameters(),
		},
		TLSFactory: func(isClient bool) transport.TLSProvider {
			if isClient {
				return quictls.NewClient("", false, []string{"qbridge/1"})
			}
			return quictls.NewServer(tlsCfg)
		},
		Mux: h3mux.DefaultConfig(true),
		RetryValidator: retryValidator,
		IdleCheckInterval: serveFlags.idleTimeout / 4,
	}
	srvCfg.Transport.MaxIdleTime = serveFlags.idleTimeout

	server := quicsrv.NewServer(srvCfg)
	server.SetHandler(quicsrv.HandlerFunc(func(c *quicsrv.Conn, events []transport.Event) {
				for _, e := range events {
					log.Debug().Str("remote", c.RemoteAddr()).Str("event", e.Type.String()).Msg("connection event")
				}
			}))
	server.SetMetrics(counters)
	prometheus.DefaultRegisterer.MustRegister(metrics.NewRegistryCollector(server.Registry(), prometheus.Labels{"listener": serveFlags.addr}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: serveFlags.metricsAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", serveFlags.metricsAddr).Msg("serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server exited")
		}
	}()

	log.Info().Str("addr", serveFlags.addr).Msg("listening for QUIC connections")
	if err := server.ListenAndServe(serveFlags.addr); err != nil {
		return err
	}
	return nil
}
