package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/formgate/analysis"
	"github.com/deemkeen/formgate/auth"
	"github.com/deemkeen/formgate/cli"
	"github.com/deemkeen/formgate/db"
	"github.com/deemkeen/formgate/metrics"
	"github.com/deemkeen/formgate/response"
	"github.com/deemkeen/formgate/util"
	"github.com/deemkeen/formgate/web"
	"github.com/gin-gonic/gin"
	"github.com/hako/durafmt"
)

const weightsFile = "weights.json"

type options struct {
	port         int
	authAttempts int
	disableBan   bool
	disableAuth  bool
	resetAuth    bool
	version      bool
}

func parseFlags(args []string, errOut io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet(util.Name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.IntVar(&o.port, "p", 0, "port to listen on (default from config, 8080)")
	fs.IntVar(&o.port, "port", 0, "port to listen on (default from config, 8080)")
	fs.IntVar(&o.authAttempts, "a", 0, "maximum authentication attempts (default from config, 3)")
	fs.IntVar(&o.authAttempts, "auth-attempts", 0, "maximum authentication attempts (default from config, 3)")
	fs.BoolVar(&o.disableBan, "disable-ban", false, "disable IP blacklisting")
	fs.BoolVar(&o.disableAuth, "disable-auth", false, "disable authentication, IP logging and blacklisting")
	fs.BoolVar(&o.resetAuth, "reset-auth", false, "reset IP logs and blacklist before starting")
	fs.BoolVar(&o.version, "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return o, nil
}

// apply lets command line flags win over the config file
func (o *options) apply(conf *util.AppConfig) {
	if o.port != 0 {
		conf.Conf.HttpPort = o.port
	}
	if o.authAttempts != 0 {
		conf.Conf.AuthAttempts = o.authAttempts
	}
	if o.disableBan {
		conf.Conf.DisableBan = true
	}
	if o.disableAuth {
		conf.Conf.DisableAuth = true
	}
	conf.Normalize()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		os.Exit(runAdmin(os.Args[2:]))
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.version {
		fmt.Printf("%s v%s\n", util.Name, util.GetVersion())
		return
	}

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalf("Could not read config: %v", err)
	}
	opts.apply(conf)
	util.SetupLogging(conf)

	if err := run(conf, opts.resetAuth); err != nil {
		log.Fatalf("Server did not start: %v", err)
	}
}

func openStore(conf *util.AppConfig) (*db.BanStore, error) {
	if conf.Conf.Store == util.StoreSQLite {
		return db.OpenSQLite(conf.Conf.AuthDb)
	}
	return db.Open(conf.Conf.AuthFile)
}

func run(conf *util.AppConfig, resetAuth bool) error {
	store, err := openStore(conf)
	if err != nil {
		return err
	}
	defer store.Close()

	if resetAuth {
		cleared, err := store.ResetAll()
		if err != nil {
			log.Printf("Could not reset attempts: %v", err)
		} else {
			log.Printf("Reset attempts for %d address(es)", cleared)
		}
	}

	if !conf.Conf.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	if conf.Conf.OmdbApiKey == "" {
		log.Printf("Warning: no OMDb API key configured, /analyze will fail")
	}

	authenticator := auth.New(store, auth.Options{
		Ban:         !conf.Conf.DisableBan,
		MaxAttempts: conf.Conf.AuthAttempts,
	})
	render := &response.Renderer{WebRoot: conf.Conf.WebRoot, Realm: conf.Conf.Realm}
	fetcher := analysis.NewFetcher(conf.Conf.OmdbApiKey, conf.Conf.WebRoot)
	analyzer := analysis.NewAnalyzer(conf.Conf.DataDir, filepath.Join(conf.Conf.WebRoot, weightsFile), fetcher)
	handlers := web.NewHandlers(conf, render, analyzer)
	router := web.NewRouter(conf, authenticator, render, handlers)

	fmt.Println(banner(conf, !conf.Conf.DisableAuth && !store.Disabled()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Conf.MetricsAddr != "" {
		go metrics.Serve(ctx, conf.Conf.MetricsAddr)
	}

	started := time.Now()
	addr := net.JoinHostPort(conf.Conf.Host, strconv.Itoa(conf.Conf.HttpPort))
	srv := web.NewServer(addr, router)
	err = srv.Run(ctx, func(a net.Addr) {
		log.Printf("Listening on %s", a)
		util.NotifyReady()
	})
	if err != nil {
		return err
	}

	log.Printf("Stopped server after %s", durafmt.Parse(time.Since(started)).LimitFirstN(2))
	return nil
}

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bannerBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func banner(conf *util.AppConfig, authEnabled bool) string {
	authMsg := "Authentication: disabled."
	banMsg := ""
	if authEnabled {
		authMsg = "Authentication: enabled."
		banMsg = "IP ban: disabled."
		if !conf.Conf.DisableBan {
			banMsg = fmt.Sprintf("IP ban: after %d failed attempts.", conf.Conf.AuthAttempts)
		}
	}

	lines := []string{
		bannerTitle.Render(util.GetNameAndVersion()),
		fmt.Sprintf("Launching server on port: %d.", conf.Conf.HttpPort),
		authMsg,
	}
	if banMsg != "" {
		lines = append(lines, banMsg)
	}
	return bannerBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

type stdSession struct {
	io.Reader
	io.Writer
}

func runAdmin(args []string) int {
	conf, err := util.ReadConf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read config: %v\n", err)
		return 1
	}
	store, err := openStore(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open credential record: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := cli.NewHandler(stdSession{os.Stdin, os.Stdout}, store, conf).Execute(args); err != nil {
		return 1
	}
	return 0
}
