package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	grpc2 "github.com/efeurhobobullish/vcf-generator/grpc"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string        `envconfig:"SESSION_SERVER_ADDR" default:"localhost:3000"`
	Timeout       time.Duration `envconfig:"CLIENT_TIMEOUT" default:"5s"`
	// CLIENT_COLOURS enables colorized output
	Colours bool `envconfig:"CLIENT_COLOURS" default:"true"`
}

const usage = `usage:
  client create -name <name> -duration <minutes>
  client get -id <session id>
  client add -id <session id> -name <full name> -phone <+234XXXXXXXXXX>`

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}
	if len(args) == 0 {
		return exitConfig, fmt.Errorf("missing command\n%s", usage)
	}

	conn, err := grpc.NewClient(config.ServerAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = conn.Close() }()

	client := grpc2.NewSessionServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		name := fs.String("name", "", "session name")
		duration := fs.Int("duration", 0, "session duration in minutes")
		if err := fs.Parse(args[1:]); err != nil {
			return exitConfig, err
		}
		resp, err := client.CreateSession(ctx, &grpc2.CreateSessionRequest{Name: *name, Duration: *duration})
		if err != nil {
			return exitRuntime, describe(err)
		}
		color.Green.Printf("Session created: %s\n", resp.SessionID)
		fmt.Printf("  name:    %s\n  expires: %s\n", resp.Name, resp.ExpiresAt.Local().Format(time.DateTime))

	case "get":
		fs := flag.NewFlagSet("get", flag.ContinueOnError)
		id := fs.String("id", "", "session id")
		if err := fs.Parse(args[1:]); err != nil {
			return exitConfig, err
		}
		resp, err := client.GetSession(ctx, &grpc2.GetSessionRequest{SessionID: *id})
		if err != nil {
			return exitRuntime, describe(err)
		}
		color.Cyan.Printf("%s\n", resp.Name)
		fmt.Printf("  duration: %d min\n  expires:  %s\n", resp.Duration, resp.ExpiresAt.Local().Format(time.DateTime))

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		id := fs.String("id", "", "session id")
		name := fs.String("name", "", "contact full name")
		phone := fs.String("phone", "", "contact phone number")
		if err := fs.Parse(args[1:]); err != nil {
			return exitConfig, err
		}
		_, err := client.AddContact(ctx, &grpc2.AddContactRequest{SessionID: *id, FullName: *name, Phone: *phone})
		if err != nil {
			return exitRuntime, describe(err)
		}
		color.Green.Println("Contact added")

	default:
		return exitConfig, fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	return exitOK, nil
}

func describe(err error) error {
	st := status.Convert(err)
	return fmt.Errorf("%s: %s", color.Red.Sprint(st.Code().String()), st.Message())
}
