package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NicolasHaas/mustangchat/pkg/client"
	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

func main() {
	settingsPath := flag.String("settings", client.DefaultSettingsPath(), "Settings YAML file")
	serverAddr := flag.String("server", "", "Relay address host:port (default from settings)")
	username := flag.String("user", "", "Username (default from settings)")
	wire := flag.String("wire", "", "Wire format: binary or json (default from settings)")
	flag.Parse()

	// Default to "warn" so logs stay out of the chat; override with
	// MUSTANG_LOG_LEVEL (debug, info, warn, error).
	level := "warn"
	if v := os.Getenv("MUSTANG_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{
		Level:  level,
		Format: os.Getenv("MUSTANG_LOG_FORMAT"),
		Output: os.Stderr,
	})

	settings, err := client.LoadSettings(*settingsPath)
	if err != nil {
		slog.Warn("settings ignored", "err", err)
	}
	if *serverAddr != "" {
		settings.Server = *serverAddr
	}
	if *username != "" {
		settings.Username = *username
	}
	if *wire != "" {
		settings.Wire = *wire
	}
	if settings.Username == "" {
		fmt.Fprintln(os.Stderr, "usage: mustangchat-client -server host:port -user name")
		os.Exit(2)
	}

	if err := run(settings); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := settings.Save(*settingsPath); err != nil {
		slog.Debug("save settings", "err", err)
	}
}

func run(settings *client.Settings) error {
	codec, err := protocol.NewCodec(settings.Wire)
	if err != nil {
		return err
	}
	c, err := client.Dial(settings.Server, codec)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Register(settings.Username); err != nil {
		return err
	}
	go func() {
		_ = c.Receive(ctx, func(text string) {
			fmt.Print("\r" + text + "\n> ")
		})
	}()
	go c.KeepAlive(ctx, settings.KeepAlive)

	fmt.Println("Connected to MustangChat. Joined Common by default.")
	fmt.Println("Type /help for a list of commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return
			}
			lines <- scanner.Text()
		}
	}()

	session := client.NewSession()
	for {
		select {
		case <-ctx.Done():
			_ = c.Send(protocol.Deregister())
			fmt.Println("\nLogged out.")
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = c.Send(protocol.Deregister())
				return nil
			}
			cmd := session.Handle(line)
			if cmd.Message != nil {
				if err := c.Send(*cmd.Message); err != nil {
					fmt.Println(err)
				}
			}
			if cmd.Output != "" {
				fmt.Println(cmd.Output)
			}
			if cmd.Quit {
				return nil
			}
		}
	}
}
