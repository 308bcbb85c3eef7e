package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"podcastflow/internal/auth"
	"podcastflow/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// userID resolves the acting user from the flag or the environment.
func (c *commandContext) userID() string {
	if c.userFlag != nil {
		if value := strings.TrimSpace(*c.userFlag); value != "" {
			return value
		}
	}
	if value := strings.TrimSpace(os.Getenv("PODCASTFLOW_USER")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("USER"))
}

// baseURL returns the daemon API root, preferring --api over paths.api_bind.
func (c *commandContext) baseURL(cfg *config.Config) (string, error) {
	addr := ""
	if c.apiFlag != nil {
		addr = strings.TrimSpace(*c.apiFlag)
	}
	if addr == "" && cfg != nil {
		addr = strings.TrimSpace(cfg.Paths.APIBind)
	}
	if addr == "" {
		return "", errors.New("daemon API address unknown; set paths.api_bind or pass --api")
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/"), nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse api address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// apiClient builds a client for the running daemon acting as the current
// user. In jwt mode it mints a short-lived bearer token with the shared
// secret.
func (c *commandContext) apiClient() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	base, err := c.baseURL(cfg)
	if err != nil {
		return nil, err
	}
	client := newAPIClient(base)
	user := c.userID()
	if user == "" {
		return client, nil
	}
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		authenticator, err := auth.New(cfg.Auth)
		if err != nil {
			return nil, err
		}
		token, err := authenticator.IssueToken(user, 15*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("issue api token: %w", err)
		}
		client.header, client.value = "Authorization", "Bearer "+token
	default:
		client.header, client.value = cfg.Auth.HeaderName, user
	}
	return client, nil
}

// skipConfigLoad marks commands that load configuration themselves or need
// none.
const skipConfigLoad = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
