// Package discovery registers this service instance with a Eureka server and
// keeps the lease alive while the process runs.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	DefaultRetryDelay = 2 * time.Second
	DefaultMaxRetries = 5
	DefaultHeartbeat  = 30 * time.Second

	requestTimeout = 10 * time.Second
	leaseDuration  = 90
)

// Config describes the instance to register.
type Config struct {
	URL        string // e.g. http://localhost:8761/eureka
	App        string
	InstanceID string // defaults to "<App>-<Port>"
	HostName   string
	IPAddr     string
	VIP        string
	Port       int
	Heartbeat  time.Duration
	RetryDelay time.Duration
	MaxRetries uint64
}

type instanceEnvelope struct {
	Instance instance `json:"instance"`
}

type instance struct {
	InstanceID     string         `json:"instanceId"`
	HostName       string         `json:"hostName"`
	App            string         `json:"app"`
	IPAddr         string         `json:"ipAddr"`
	VIPAddress     string         `json:"vipAddress"`
	Status         string         `json:"status"`
	Port           port           `json:"port"`
	DataCenterInfo dataCenterInfo `json:"dataCenterInfo"`
	LeaseInfo      leaseInfo      `json:"leaseInfo"`
}

type port struct {
	Number  int    `json:"$"`
	Enabled string `json:"@enabled"`
}

type dataCenterInfo struct {
	Class string `json:"@class"`
	Name  string `json:"name"`
}

type leaseInfo struct {
	RenewalIntervalInSecs int `json:"renewalIntervalInSecs"`
	DurationInSecs        int `json:"durationInSecs"`
}

// Registrar owns the registration lifecycle: Start registers and begins
// heartbeats in the background, Stop ends them and deregisters.
type Registrar struct {
	cfg    Config
	client *resty.Client
	log    *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	registered atomic.Bool
}

func NewRegistrar(cfg Config, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fmt.Sprintf("%s-%d", cfg.App, cfg.Port)
	}
	if cfg.VIP == "" {
		cfg.VIP = cfg.App
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Registrar{
		cfg:    cfg,
		client: client,
		log:    log.With(zap.String("instance_id", cfg.InstanceID)),
	}
}

func (r *Registrar) InstanceID() string { return r.cfg.InstanceID }

// Registered reports whether the server currently holds our lease.
func (r *Registrar) Registered() bool { return r.registered.Load() }

func (r *Registrar) appPath() string { return "/apps/" + r.cfg.App }

func (r *Registrar) instancePath() string { return r.appPath() + "/" + r.cfg.InstanceID }

func (r *Registrar) document() instanceEnvelope {
	return instanceEnvelope{Instance: instance{
		InstanceID: r.cfg.InstanceID,
		HostName:   r.cfg.HostName,
		App:        r.cfg.App,
		IPAddr:     r.cfg.IPAddr,
		VIPAddress: r.cfg.VIP,
		Status:     "UP",
		Port:       port{Number: r.cfg.Port, Enabled: "true"},
		DataCenterInfo: dataCenterInfo{
			Class: "com.netflix.appinfo.InstanceInfo$DefaultDataCenterInfo",
			Name:  "MyOwn",
		},
		LeaseInfo: leaseInfo{
			RenewalIntervalInSecs: int(r.cfg.Heartbeat / time.Second),
			DurationInSecs:        leaseDuration,
		},
	}}
}

// Register posts the instance document, retrying with a constant delay.
func (r *Registrar) Register(ctx context.Context) error {
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewConstant(r.cfg.RetryDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		resp, err := r.client.R().
			SetContext(ctx).
			SetBody(r.document()).
			Post(r.appPath())
		if err != nil {
			r.log.Warn("eureka registration attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		if !resp.IsSuccess() {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode())
			r.log.Warn("eureka registration attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", r.cfg.InstanceID, err)
	}
	r.registered.Store(true)
	r.log.Info("registered with eureka", zap.String("app", r.cfg.App))
	return nil
}

// renew sends one heartbeat. A 404 means the server forgot us, so register again.
func (r *Registrar) renew(ctx context.Context) error {
	resp, err := r.client.R().SetContext(ctx).Put(r.instancePath())
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		r.registered.Store(false)
		r.log.Info("eureka lease not found, re-registering")
		return r.Register(ctx)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// Start registers and heartbeats in a background goroutine. Failures are
// logged and never stop the caller. Calling Start twice is a no-op.
func (r *Registrar) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
}

func (r *Registrar) run(ctx context.Context) {
	if err := r.Register(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("eureka registration failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var err error
			if r.registered.Load() {
				err = r.renew(ctx)
			} else {
				err = r.Register(ctx)
			}
			if err != nil && ctx.Err() == nil {
				r.log.Warn("eureka heartbeat failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the heartbeat goroutine, waits for it and deregisters.
func (r *Registrar) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	r.wg.Wait()

	if !r.registered.Load() {
		return nil
	}
	resp, err := r.client.R().SetContext(ctx).Delete(r.instancePath())
	if err != nil {
		return fmt.Errorf("deregister %s: %w", r.cfg.InstanceID, err)
	}
	if !resp.IsSuccess() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("deregister %s: unexpected status %d", r.cfg.InstanceID, resp.StatusCode())
	}
	r.registered.Store(false)
	r.log.Info("deregistered from eureka")
	return nil
}
