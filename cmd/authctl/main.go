package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/identity"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
)

const googleIssuer = "https://accounts.google.com"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if c.GetEnv() != "DEV" {
		log = log.Level(zerolog.InfoLevel)
	}

	if len(os.Args) < 2 {
		usage(c.GetAppName())
		return nil
	}

	client, stopWatch, err := auth.FromConfig(c, log)
	if err != nil {
		return fmt.Errorf("auth.FromConfig: %w", err)
	}
	defer stopWatch()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "login":
		return login(ctx, client, os.Args[2:])
	case "google":
		return googleLogin(ctx, c, client)
	case "federated":
		return federated(ctx, client, os.Args[2:])
	case "me":
		return me(client)
	case "refresh-me":
		return refreshMe(ctx, client)
	case "logout":
		client.Logout(ctx)
		fmt.Println("Logged out")
		return nil
	case "watch":
		return watch(ctx, client)
	default:
		usage(c.GetAppName())
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func usage(appName string) {
	displayAppname(appName)
	fmt.Println("Commands:")
	fmt.Println("  login -email <email> [-password <password>]   sign in with email and password")
	fmt.Println("  google                                        sign in with Google")
	fmt.Println("  federated -provider <GOOGLE|APPLE> -token <t> exchange an identity token")
	fmt.Println("  me                                            show the cached user snapshot")
	fmt.Println("  refresh-me                                    fetch the user record from the backend")
	fmt.Println("  logout                                        end the session")
	fmt.Println("  watch                                         print session changes as they happen")
}

func login(ctx context.Context, client *auth.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		*password = strings.TrimSpace(line)
	}

	sess, err := client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	printUser(sess.User)
	return nil
}

func googleLogin(ctx context.Context, c config.Config, client *auth.Client) error {
	if c.GetGoogleClientID() == "" {
		return errors.New("GOOGLE_CLIENT_ID is not set")
	}
	provider := identity.NewBrowserProvider(
		api.ProviderGoogle,
		googleIssuer,
		c.GetGoogleClientID(),
		c.GetGoogleClientSecret(),
		c.GetRedirectAddr(),
	)
	sess, err := client.LoginWithProvider(ctx, provider)
	if err != nil {
		return err
	}
	printUser(sess.User)
	return nil
}

func federated(ctx context.Context, client *auth.Client, args []string) error {
	fs := flag.NewFlagSet("federated", flag.ExitOnError)
	provider := fs.String("provider", string(api.ProviderGoogle), "identity provider type")
	token := fs.String("token", "", "provider-issued identity token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := client.FederatedLogin(ctx, api.ProviderType(*provider), *token)
	if err != nil {
		return err
	}
	printUser(sess.User)
	return nil
}

func me(client *auth.Client) error {
	user, ok := client.CurrentUser()
	if !ok {
		fmt.Println("Not logged in")
		return nil
	}
	printUser(user)
	return nil
}

func refreshMe(ctx context.Context, client *auth.Client) error {
	user, err := client.RefreshCurrentUser(ctx)
	if err != nil {
		return err
	}
	printUser(user)
	return nil
}

func watch(ctx context.Context, client *auth.Client) error {
	unsubscribe := client.OnSessionChange(func(sess session.Session) {
		if sess.Active() {
			fmt.Println("session changed: logged in")
			printUser(sess.User)
			return
		}
		fmt.Println("session changed: logged out")
	})
	defer unsubscribe()

	fmt.Println("Watching for session changes (Ctrl-C to stop)")
	<-ctx.Done()
	return nil
}

func printUser(user session.UserSnapshot) {
	if len(user) == 0 {
		fmt.Println("(no user snapshot)")
		return
	}
	fmt.Println(string(user))
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
