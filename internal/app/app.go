package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"holyiot-gateway/internal/ble"
	"holyiot-gateway/internal/capture"
	"holyiot-gateway/internal/config"
	"holyiot-gateway/internal/db"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/httpapi"
	"holyiot-gateway/internal/migrate"
	"holyiot-gateway/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing gateway",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"topic_prefix", cfg.MQTTTopicPrefix,
		"variant", cfg.Variant,
		"tracked_address", cfg.TrackedAddress,
		"publish_interval", cfg.PublishInterval,
		"capture_path", cfg.CapturePath,
		"http_addr", cfg.HTTPAddr,
	)

	decoder, err := holyiot.New(cfg.Variant, holyiot.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	var (
		journal ble.Journal
		pinger  httpapi.Pinger
	)
	if cfg.CapturePath != "" {
		conn, err := db.Open(cfg.CapturePath, logger)
		if err != nil {
			return fmt.Errorf("open capture db: %w", err)
		}
		defer func() {
			if err := db.Close(conn); err != nil {
				logger.Error("close capture db", "error", err)
			}
		}()
		if err := migrate.Run(ctx, conn, logger); err != nil {
			return fmt.Errorf("migrate capture db: %w", err)
		}
		journal = capture.NewRepository(conn)
		pinger = conn
		logger.Info("capture journal enabled", "path", cfg.CapturePath)
	}

	mqttClient, err := mqtt.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect()

	go func() {
		// Paho retries internally; publishes fail fast until this returns.
		if err := mqttClient.Connect(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mqtt connect failed", "error", err)
		}
	}()

	bleListener := ble.NewListener(ble.Options{
		Adapter: cfg.BLEAdapter,
		Filter: ble.Filter{
			ServiceUUIDs: []string{holyiot.ServiceUUID},
		},
		Logger: logger,
	})
	bleHandler := ble.NewBatteryHandler(decoder, mqttClient, ble.HandlerOptions{
		TrackedAddress:  cfg.TrackedAddress,
		PublishInterval: cfg.PublishInterval,
		Journal:         journal,
		Logger:          logger,
	})
	bleHandler.StartListener(ctx, bleListener)

	if cfg.HTTPAddr == "" {
		<-ctx.Done()
		logger.Info("gateway shutting down")
		return nil
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(mqttClient, pinger, bleHandler), logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	logger.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
