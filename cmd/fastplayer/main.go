package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/lisuiheng/fastplayer/core"
	"github.com/lisuiheng/fastplayer/logger"
	"github.com/spf13/viper"
)

func main() {
	// 定义命令行参数
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/fastplayer/config.yaml)")
	flag.Parse()

	// 加载配置
	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logger.Logger().Info("Shutting down fastplayer service")

	watchConfig()

	client, err := core.NewClient(cfg, logger.Logger())
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close client", "error", err)
		}
	}()

	// 设置信号处理
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting fastplayer service", "session_id", client.Status().SessionID)
	if err := client.Run(ctx); err != nil {
		logger.Error("Service runtime error", "error", err)
		return
	}
	logger.Info("Service shutdown completed")
}

// setDefaults 以 core.DefaultConfig 作为 viper 默认值
func setDefaults() {
	def := core.DefaultConfig()
	viper.SetDefault("audio.backend", def.Audio.Backend)
	viper.SetDefault("audio.frame_duration", def.Audio.FrameDuration)
	viper.SetDefault("audio.opus_channels", def.Audio.OpusChannels)
	viper.SetDefault("audio.max_source_bytes", def.Audio.MaxSourceBytes)
	viper.SetDefault("record.dir", def.Record.Dir)
	viper.SetDefault("record.sample_rate", def.Record.SampleRate)
	viper.SetDefault("record.channels", def.Record.Channels)
	viper.SetDefault("record.max_duration", def.Record.MaxDuration)
	viper.SetDefault("control.listen", def.Control.Listen)
	viper.SetDefault("control.path", def.Control.Path)
	viper.SetDefault("control.access_token", def.Control.AccessToken)
	viper.SetDefault("control.stop_on_disconnect", def.Control.StopOnDisconnect)
	viper.SetDefault("control.allowed_origins", def.Control.AllowedOrigins)
	viper.SetDefault("logging.level", def.Logging.Level)
	viper.SetDefault("logging.format", def.Logging.Format)
	viper.SetDefault("logging.outputs", def.Logging.Outputs)
}

// loadConfig 加载配置文件，未指定路径且找不到文件时使用默认值
func loadConfig(configPath string) (core.Config, error) {
	setDefaults()
	viper.SetConfigType("yaml")

	if configPath != "" {
		// 使用命令行指定的路径
		viper.SetConfigFile(configPath)
	} else {
		// 默认多路径搜索
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/fastplayer")
	}

	// FASTPLAYER_CONTROL_LISTEN 覆盖 control.listen
	viper.SetEnvPrefix("FASTPLAYER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return core.Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg core.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return core.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

// initLogger 初始化日志系统
func initLogger(cfg core.Config) error {
	logCfg := cfg.Logging

	// 调试模式覆盖配置
	if viper.GetBool("debug") {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}

	return logger.Init(logCfg)
}

// watchConfig 配置文件变更时热更新日志级别，其余配置需重启生效
func watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("logging.level")
		logger.SetLevel(level)
		logger.Info("Config changed, log level updated", "file", e.Name, "level", level)
	})
	viper.WatchConfig()
}
