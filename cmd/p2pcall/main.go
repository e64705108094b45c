package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quickrtc/p2p-go/pkg/config"
	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/p2p"
	"github.com/quickrtc/p2p-go/pkg/profiling"
	"github.com/quickrtc/p2p-go/pkg/signaling"
	"github.com/quickrtc/p2p-go/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// A console observer that prints every session event.
type printingObserver struct{}

func (printingObserver) OnInvited(remoteID string)  { fmt.Printf("<- %s invited you\n", remoteID) }
func (printingObserver) OnAccepted(remoteID string) { fmt.Printf("<- %s accepted\n", remoteID) }
func (printingObserver) OnDenied(remoteID string)   { fmt.Printf("<- %s denied\n", remoteID) }
func (printingObserver) OnStarted(remoteID string)  { fmt.Printf("-- session with %s started\n", remoteID) }
func (printingObserver) OnStopped(remoteID string)  { fmt.Printf("-- session with %s stopped\n", remoteID) }
func (printingObserver) OnData(remoteID string, message string) {
	fmt.Printf("<- %s: %s\n", remoteID, message)
}
func (printingObserver) OnStreamAdded(stream *p2p.RemoteStream) {
	fmt.Printf("-- remote stream %s (%s) added\n", stream.Label(), stream.Source())
}
func (printingObserver) OnStreamRemoved(stream *p2p.RemoteStream) {
	fmt.Printf("-- remote stream %s removed\n", stream.Label())
}

func main() {
	var (
		configFilePath = flag.String("config", "config.yaml", "configuration file path")
		cpuProfile     = flag.String("cpuProfile", "", "write CPU profile to `file`")
		memProfile     = flag.String("memProfile", "", "write memory profile to `file`")
	)
	flag.Parse()

	// Initialize logging subsystem (formatting, global logging framework etc).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})

	// Functions that are called before exiting, e.g. to stop the profiler.
	deferredFunctions := []func(){}
	if *cpuProfile != "" {
		deferredFunctions = append(deferredFunctions, profiling.InitCPUProfiling(*cpuProfile))
	}
	if *memProfile != "" {
		deferredFunctions = append(deferredFunctions, profiling.InitMemoryProfiling(*memProfile))
	}
	defer func() {
		for _, function := range deferredFunctions {
			function()
		}
	}()

	cfg, err := config.LoadConfig(*configFilePath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
		return
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if cfg.Telemetry.Enabled() {
		provider, err := telemetry.Setup(cfg.Telemetry)
		if err != nil {
			logrus.WithError(err).Fatal("could not set up telemetry")
			return
		}
		defer provider.Shutdown(context.Background()) //nolint:errcheck
	}

	// Connect to the rendezvous server.
	transport, err := signaling.Dial(cfg.Signaling, logrus.WithField("transport", "websocket"))
	if err != nil {
		logrus.WithError(err).Fatal("could not connect to the signaling server")
		return
	}
	defer transport.Close()

	// One engine per remote peer, all built from a shared factory.
	factory, err := engine.NewPeerConnectionFactory(cfg.Engine)
	if err != nil {
		logrus.WithError(err).Fatal("could not create peer connection factory")
		return
	}

	client := p2p.NewClient(
		cfg.Signaling.ClientID,
		transport,
		func(remoteID string) (engine.PeerEngine, error) {
			return engine.NewPionEngine(factory, logrus.WithField("remote", remoteID)), nil
		},
		cfg.Channel,
	)
	defer client.Stop()

	client.AddObserver(printingObserver{})
	transport.OnMessage(client.OnIncomingSignalingMessage)

	// Tear everything down on interruption.
	interrupted := make(chan os.Signal, 2)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupted
		client.Stop()
		transport.Close()
		for _, function := range deferredFunctions {
			function()
		}
		os.Exit(0)
	}()

	fmt.Println("commands: invite <id> | accept <id> | deny <id> | send <id> <text> | stop <id> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "quit" {
			return
		}
		if len(fields) < 2 {
			fmt.Println("missing peer id")
			continue
		}

		channel, err := client.Channel(fields[1])
		if err != nil {
			fmt.Printf("!! %v\n", err)
			continue
		}

		onDone := func(action string) (func(), func(error)) {
			return func() { fmt.Printf("-> %s ok\n", action) },
				func(err error) { fmt.Printf("!! %s failed: %v\n", action, err) }
		}

		switch fields[0] {
		case "invite":
			channel.Invite(onDone("invite"))
		case "accept":
			channel.Accept(onDone("accept"))
		case "deny":
			channel.Deny(onDone("deny"))
		case "stop":
			channel.Stop(onDone("stop"))
		case "send":
			if len(fields) < 3 {
				fmt.Println("missing message text")
				continue
			}
			channel.Send(strings.Join(fields[2:], " "), onDone("send"))
		default:
			fmt.Printf("unknown command: %s\n", fields[0])
		}
	}
}
