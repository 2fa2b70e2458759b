// Command ir-sensor counts debounced IR receiver edges and publishes count changes to MQTT.
package main

import (
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

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/ir-sensor/internal/channel"
	"github.com/sweeney/ir-sensor/internal/config"
	"github.com/sweeney/ir-sensor/internal/gpio"
	"github.com/sweeney/ir-sensor/internal/logic"
	"github.com/sweeney/ir-sensor/internal/mqtt"
	"github.com/sweeney/ir-sensor/internal/status"
	"github.com/sweeney/ir-sensor/internal/web"
)

type options struct {
	configPath  string
	poll        time.Duration
	broker      string
	clientID    string
	outbox      int
	heartbeat   time.Duration
	httpAddr    string
	chip        string
	printConfig bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Sensor table YAML file (empty for the built-in four sensors)")
	flag.DurationVar(&o.poll, "poll", 100*time.Millisecond, "Count polling interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&o.clientID, "client-id", "ir-sensor", "MQTT client ID")
	flag.IntVar(&o.outbox, "outbox", mqtt.DefaultOutboxSize, "Messages held while the broker is unreachable")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.chip, "chip", "", "GPIO chip, overrides the config file")
	flag.BoolVar(&o.printConfig, "print-config", false, "Print the resolved sensor table and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.chip != "" {
		cfg.Chip = o.chip
	}
	return cfg, nil
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if o.printConfig {
		out, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	table, err := channel.New(channel.NewClock(clock.New()), cfg.ChannelConfigs())
	if err != nil {
		return fmt.Errorf("build channel table: %w", err)
	}

	src, err := gpio.NewRealSource(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	if err := gpio.Bind(src, table, cfg.Bindings()); err != nil {
		return fmt.Errorf("bind gpio: %w", err)
	}

	publisher, err := mqtt.NewRealPublisher(o.broker, o.clientID, o.outbox)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	sensors := cfg.SensorList()

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), sensors, status.Config{
		PollMs:      o.poll.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		Chip:        cfg.Chip,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	g, ctx := errgroup.WithContext(context.Background())

	resets := logic.NewResetQueue()

	var srv *web.Server
	if o.httpAddr != "" {
		srv = web.New(o.httpAddr, tracker, resets)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	for i, s := range sensors {
		log.Printf("channel %d: %s pin=%d debounce=%v", i, s.Name, s.Pin, cfg.ChannelConfigs()[i].Debounce)
	}
	log.Printf("started: chip=%s channels=%d poll=%v broker=%s heartbeat=%v",
		cfg.Chip, table.ChannelCount(), o.poll, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		if srv != nil {
			defer srv.Shutdown(context.Background())
		}
		defer resets.Close()
		return runLoop(ctx, table, sensors, resets, publisher, publisher, tracker, o.heartbeat, time.Now, ticker.C, sigCh)
	})

	return g.Wait()
}

func runLoop(ctx context.Context, table *channel.Table, sensors []logic.Sensor, resets *logic.ResetQueue, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	detector := logic.NewDetector(sensors, startTime)

	var resetC <-chan logic.ResetRequest
	if resets != nil {
		resetC = resets.C()
	}

	shutdown := func(reason string) {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			shutdown(signalName)
			return nil

		case <-ctx.Done():
			log.Printf("stopping: %v", context.Cause(ctx))
			shutdown("ERROR")
			return nil

		case req := <-resetC:
			n, err := detector.TakeCount(table, req.Index)
			if err != nil {
				log.Printf("reset channel %d: %v", req.Index, err)
			} else {
				log.Printf("reset channel %d: took %d", req.Index, n)
			}
			req.Reply(n, err)

		case <-tick:
			t := now()
			readings := table.Readings()

			for _, event := range detector.Process(readings, t) {
				log.Printf("event: %s channel=%d name=%s count=%d delta=%d",
					event.Type, event.Channel, event.Name, event.Count, event.Delta)
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
				}
			}

			if hbData := detector.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v totals=%v", hbData.Uptime, hbData.Totals)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(readings, table.Now(), hbData.Totals, detector.IsPrimed())
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			if tracker != nil {
				tracker.Update(readings, table.Now(), detector.TotalsSnapshot(), detector.IsPrimed())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
