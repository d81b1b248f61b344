package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/sanjio/sanjio/internal/attempt"
	"github.com/sanjio/sanjio/internal/client"
	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/console"
	"github.com/sanjio/sanjio/internal/countdown"
	"github.com/sanjio/sanjio/internal/logger"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/session"
	"github.com/sanjio/sanjio/internal/snapshot"
	"github.com/sanjio/sanjio/internal/submission"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "sanjio.yaml", "Path to the client config file")
	examID := flag.String("exam", "", "ID of the exam to take")
	flag.Parse()

	if *examID == "" {
		fmt.Fprintln(os.Stderr, "usage: take -exam <exam-id> [-config sanjio.yaml]")
		return 2
	}

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		return 1
	}
	defer logFile.Close()
	log := logger.New(logFile, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL, cfg.Token, cfg.RequestTimeout, log)
	if api.Token() == "" {
		if err := login(ctx, api); err != nil {
			fmt.Fprintln(os.Stderr, "login failed:", err)
			return 1
		}
	}

	persistence, closeSnapshot, err := snapshot.Open(ctx, cfg.Snapshot, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session storage:", err)
		return 1
	}
	defer closeSnapshot()

	store := session.New(persistence, log)
	if err := store.Hydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable session snapshot")
	}

	redraw := make(chan struct{}, 1)
	poke := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}

	view, err := attempt.Enter(ctx, api, store, *examID,
		attempt.WithLogger(log),
		attempt.WithTick(func(countdown.Remaining) { poke() }),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open the exam: %v\nReturn to the exam page and try again.\n", err)
		return 1
	}
	defer view.Close()

	autosaver := client.NewAutosaver(api.StreamURL(view.AttemptID), *examID, log)
	autosaver.Observe(store.State())
	unsubscribe := store.Subscribe(func(st session.State) {
		autosaver.Observe(st)
		poke()
	})
	defer unsubscribe()
	autosaver.Start(ctx)
	defer autosaver.Stop()

	msg, code := loop(ctx, view, log, redraw)
	fmt.Println(msg)
	return code
}

// loop runs the raw-mode terminal until the candidate leaves the view.
func loop(ctx context.Context, view *attempt.View, log zerolog.Logger, redraw <-chan struct{}) (string, int) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Sprintf("terminal: %v", err), 1
	}
	defer term.Restore(fd, oldState)

	keys := make(chan []byte)
	go readKeys(keys)

	a := newApp(view.Store())
	results := make(chan error, 1)
	title := view.Info.Title

	for {
		if err := console.Render(os.Stdout, a.screen(title, view.Countdown())); err != nil {
			log.Error().Err(err).Msg("Render failed")
		}

		select {
		case <-ctx.Done():
			return "\r\nInterrupted. Your progress is saved; run take again to continue.", 130
		case e := <-view.Done():
			return leaveView(view, e)
		case err := <-results:
			a.submitted(err)
		case <-redraw:
		case buf, ok := <-keys:
			if !ok {
				return "\r\nInput closed. Your progress is saved.", 1
			}
			for _, ev := range console.Decode(buf) {
				switch a.handle(ev) {
				case actionQuit:
					// Quitting keeps the snapshot so take can resume the attempt.
					return "\r\nYou left the exam without submitting. Your progress is saved.", 0
				case actionSubmit:
					go func() { results <- view.Submit(ctx) }()
				}
			}
		}
	}
}

func readKeys(out chan<- []byte) {
	buf := make([]byte, 32)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(out)
			return
		}
		out <- append([]byte(nil), buf[:n]...)
	}
}

// leaveView tears the view down after the attempt ended. The attempt is
// over either way, so the local snapshot is cleared as well.
func leaveView(view *attempt.View, e attempt.Exit) (string, int) {
	view.Leave()
	return exitMessage(e)
}

func exitMessage(e attempt.Exit) (string, int) {
	switch {
	case e.Reason == attempt.ExitSubmitted:
		return "\r\nYour answers were submitted. You may close this window.", 0
	case e.Err == nil:
		return "\r\nTime is up. Your answers were submitted automatically.", 0
	}
	var subErr *submission.Error
	if errors.As(e.Err, &subErr) {
		return "\r\n" + subErr.Message(), 1
	}
	return "\r\nTime is up: " + e.Err.Error(), 1
}

func login(ctx context.Context, api *client.Client) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}

	resp, err := api.Login(ctx, strings.TrimSpace(email), string(password))
	if err != nil {
		if client.IsCode(err, response.ErrInvalidCredentials) {
			return errors.New("email or password is incorrect")
		}
		return err
	}
	fmt.Printf("Signed in as %s.\n", resp.Profile.FullName)
	return nil
}
