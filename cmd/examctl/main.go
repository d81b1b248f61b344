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

	"golang.org/x/term"

	"github.com/sanjio/sanjio/internal/client"
	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/examsettings"
	"github.com/sanjio/sanjio/internal/logger"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/optimistic"
	"github.com/sanjio/sanjio/internal/response"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "sanjio.yaml", "Path to the client config file")
	examID := flag.String("exam", "", "ID of the exam to change")
	duration := flag.Int("duration", 0, "New time limit in minutes")
	unlimited := flag.Bool("unlimited", false, "Remove the time limit")
	negative := flag.Bool("negative-marking", false, "Enable or disable negative marking")
	flag.Parse()

	if *examID == "" {
		fmt.Fprintln(os.Stderr, "usage: examctl -exam <exam-id> [-duration N | -unlimited] [-negative-marking=true|false]")
		return 2
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["duration"] && set["unlimited"] {
		fmt.Fprintln(os.Stderr, "-duration and -unlimited are mutually exclusive")
		return 2
	}
	if set["duration"] && *duration <= 0 {
		fmt.Fprintln(os.Stderr, "-duration must be positive; use -unlimited to remove the limit")
		return 2
	}

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log := logger.New(os.Stderr, cfg.Log.Level, "pretty")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL, cfg.Token, cfg.RequestTimeout, log)
	if api.Token() == "" {
		if err := login(ctx, api); err != nil {
			fmt.Fprintln(os.Stderr, "login failed:", err)
			return 1
		}
	}

	current, err := api.FetchExamSettings(ctx, *examID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load settings:", describe(err))
		return 1
	}

	ctl := examsettings.New(*examID, *current, api, log)
	printState("current", ctl.State())

	next := *current
	if set["duration"] {
		minutes := *duration
		next.DurationMinutes = &minutes
	}
	if set["unlimited"] && *unlimited {
		next.DurationMinutes = nil
	}
	if set["negative-marking"] {
		next.NegativeMarking = *negative
	}

	if sameSettings(next, *current) {
		fmt.Println("Nothing to change.")
		return 0
	}

	printState("pending", optimistic.State[model.ExamSettings]{Status: optimistic.StatusPending, Value: next})
	err = ctl.Apply(ctx, next)
	state := ctl.State()
	printState(state.Status.String(), state)
	if err != nil {
		fmt.Fprintln(os.Stderr, "update rejected:", describe(err))
		return 1
	}
	return 0
}

func sameSettings(a, b model.ExamSettings) bool {
	if a.NegativeMarking != b.NegativeMarking {
		return false
	}
	if a.DurationMinutes == nil || b.DurationMinutes == nil {
		return a.DurationMinutes == nil && b.DurationMinutes == nil
	}
	return *a.DurationMinutes == *b.DurationMinutes
}

func printState(label string, st optimistic.State[model.ExamSettings]) {
	fmt.Printf("%-9s duration=%s negative_marking=%t\n",
		label+":", formatDuration(st.Value.DurationMinutes), st.Value.NegativeMarking)
}

func formatDuration(minutes *int) string {
	if minutes == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%dm", *minutes)
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func login(ctx context.Context, api *client.Client) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Admin email: ")
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
	if resp.Profile.Role != model.RoleAdmin {
		return errors.New("this account is not an administrator")
	}
	return nil
}
