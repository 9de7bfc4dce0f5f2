package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/config"
	"github.com/snapetech/epgmerge/internal/logging"
)

type commandContext struct {
	envFileFlag  *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	rules      config.Rules
	logger     zerolog.Logger
	configErr  error
}

func newCommandContext(envFileFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		envFileFlag:  envFileFlag,
		logLevelFlag: logLevelFlag,
		logger:       logging.Nop(),
	}
}

// ensureConfig loads the env file, the environment and the rules file once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.envFileFlag != nil {
			if err := config.LoadEnvFile(strings.TrimSpace(*c.envFileFlag)); err != nil {
				c.configErr = fmt.Errorf("load env file: %w", err)
				return
			}
		}
		cfg := config.Load()
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.logLevelFlag)
		}
		rules, err := config.LoadRules(cfg.RulesFile)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.rules = rules
		c.logger = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *zerolog.Logger {
	return &c.logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
