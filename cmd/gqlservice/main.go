package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hanpama/gqlservice/internal/eventbus"
	"github.com/hanpama/gqlservice/internal/introspection"
	"github.com/hanpama/gqlservice/internal/jsonresponse"
	"github.com/hanpama/gqlservice/internal/language"
	"github.com/hanpama/gqlservice/internal/launch"
	"github.com/hanpama/gqlservice/internal/logging"
	"github.com/hanpama/gqlservice/internal/otel"
	"github.com/hanpama/gqlservice/internal/response"
	"github.com/hanpama/gqlservice/internal/schema"
	"github.com/hanpama/gqlservice/internal/server"
	"github.com/hanpama/gqlservice/internal/service"
	"github.com/hanpama/gqlservice/internal/today"
)

const rootUsage = `gqlservice: GraphQL execution service

USAGE:
  gqlservice <command> [flags]

COMMANDS:
  serve            Run the HTTP and websocket GraphQL server of the today service
  query            Execute one operation against the today service
  print-schema     Print the SDL of the today service
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                   YAML configuration file; flags override it
  -server.addr <addr>              HTTP listen address (default: :8080)
  -server.pretty                   Pretty-print JSON responses
  -server.timeout <duration>       Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>       Request body limit (default: unlimited)
  -server.metadata-header <name>   Forward HTTP header to resolver metadata. Repeatable
  -server.cors-origin <origin>     Allowed CORS origin. Repeatable
  -server.graphiql <bool>          Serve GraphiQL (default: true)
  -server.keep-alive <duration>    Websocket keep-alive interval (default: 30s)
  -graphql.introspection <bool>    Enable GraphQL introspection (default: true)
  -graphql.launch <policy>         sync, goroutine, queue:N or bounded:N (default: goroutine)
  -otel.endpoint <addr>            OTLP collector endpoint
  -otel.service <name>             OpenTelemetry service name (default: gqlservice)
  -log.dev                         Development logging
  -log.level <level>               debug, info, warn or error (default: info)
  -today.tick <duration>           Publish a sample appointment change at this interval
`

const queryUsage = `query FLAGS:
  -operation <name>   Operation to execute
  -variables <json>   Variables object
  -file <file>        Read the query from a file instead of the argument
  -launch <policy>    sync, goroutine, queue:N or bounded:N (default: sync)
  -pretty             Pretty-print the response
ARGS:
  <query>             GraphQL document
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>   Write SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlservice", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "query":
		return cmdQuery(cmdArgs)
	case "print-schema":
		return cmdPrintSchema(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "query":
		fmt.Print(queryUsage)
	case "print-schema":
		fmt.Print(printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newRequest serves the today sample over a fresh mock.
func newRequest(introspect bool, policy launch.Policy) (*service.Request, *today.Mock, error) {
	sch, err := today.Schema()
	if err != nil {
		return nil, nil, fmt.Errorf("build schema: %w", err)
	}
	if !introspect {
		sch.DisableIntrospection()
	}
	mock := today.NewMock()
	req := service.NewRequest(mock.Operations(), sch,
		service.WithIntrospection(introspection.MetaFields),
		service.WithDefaultLaunch(policy))
	return req, mock, nil
}

func cmdServe(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	eventbus.Use(eventbus.New())
	defer logging.Setup(logger)()
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	policy, release, err := parseLaunch(cfg.GraphQL.Launch)
	if err != nil {
		return err
	}
	defer release()
	req, mock, err := newRequest(cfg.GraphQL.Introspection, policy)
	if err != nil {
		return err
	}

	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithGraphiQL(cfg.Server.GraphiQL),
		server.WithKeepAlive(cfg.Server.KeepAlive),
		server.WithLaunch(policy),
		server.WithState(func(*http.Request) any { return &today.RequestState{} }),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(req, sopts...))
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("GraphQL server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.Today.Tick > 0 {
		g.Go(func() error { return tickAppointments(ctx, req, mock, cfg.Today.Tick, logger) })
	}
	return g.Wait()
}

// tickAppointments delivers a changed appointment to the subscriptions of
// req every interval until ctx is done.
func tickAppointments(ctx context.Context, req *service.Request, mock *today.Mock, interval time.Duration, logger *zap.Logger) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			a := &today.Appointment{
				ID:        today.FakeAppointmentID,
				Scheduled: timestamppb.New(now),
				Subject:   fmt.Sprintf("Change #%d", n),
				IsNow:     true,
			}
			if err := today.DeliverAppointmentChange(ctx, req, a); err != nil {
				logger.Warn("deliver appointment change", zap.Error(err))
			}
			if err := today.DeliverNodeChange(ctx, req, mock, today.FakeAppointmentID); err != nil {
				logger.Warn("deliver node change", zap.Error(err))
			}
		}
	}
}

func cmdQuery(args []string) error {
	operation := ""
	variables := ""
	file := ""
	launchSpec := "sync"
	pretty := false
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&operation, "operation", operation, "Operation to execute")
	fs.StringVar(&variables, "variables", variables, "Variables object")
	fs.StringVar(&file, "file", file, "Read the query from a file")
	fs.StringVar(&launchSpec, "launch", launchSpec, "Launch policy")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print the response")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, queryUsage)
		return err
	}

	var query string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		query = string(data)
	case fs.NArg() == 1:
		query = fs.Arg(0)
	default:
		fmt.Fprint(os.Stderr, queryUsage)
		return fmt.Errorf("expected one query argument")
	}

	doc, err := language.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}
	vars := response.NewMap(0)
	if variables != "" {
		if vars, err = jsonresponse.Parse([]byte(variables)); err != nil {
			return fmt.Errorf("parse variables: %w", err)
		}
	}

	policy, release, err := parseLaunch(launchSpec)
	if err != nil {
		return err
	}
	defer release()
	req, _, err := newRequest(true, policy)
	if err != nil {
		return err
	}

	out, err := jsonresponse.Marshal(req.Document(context.Background(), service.RequestResolveParams{
		Query:         doc,
		OperationName: operation,
		Variables:     vars,
		State:         &today.RequestState{},
	}))
	if err != nil {
		return err
	}
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, out, "", "  "); err != nil {
			return err
		}
		out = buf.Bytes()
	}
	fmt.Println(string(out))
	return nil
}

func cmdPrintSchema(args []string) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return err
	}

	sch, err := today.Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
