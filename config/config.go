// Package config loads Relay's environment-variable configuration
// (spec §6), applying defaults in code rather than via a struct-tag config
// library — the teacher's own cmn config loader parses flags/env directly
// in the same way, and the var set here is small, flat, and fully
// enumerated.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	BackendIP   string
	BackendPort int

	WorkerThreadMultiplier     int
	BackpressureQueueMultiplier int
	SenderThreadCount          int

	ColorImgMaxWidth int
	ColorImgQuality  int
	DepthImgMaxWidth int
	DepthImgCompress bool

	BatchBufferSizeLimit int64
	BatchBufferTimeout   time.Duration

	ScanThreadCount        int
	SlidingWindowCacheSize int

	PortRangeStart int
	PortRangeEnd   int

	MaxCPUPercent               float64
	MaxMemoryPercent            float64
	SessionTimeoutSecs          int
	MemoryPressureTimeoutSecs   int

	StreamMemoryCeilingBytes int64

	MongoURI      string
	MongoAppUser  string
	MongoAppPass  string

	LogDir   string
	LogLevel string
}

// FromEnv loads Config from the process environment, applying the defaults
// documented in SPEC_FULL.md §6.
func FromEnv() *Config {
	c := &Config{
		BackendIP:   getStr("BACKEND_IP", "0.0.0.0"),
		BackendPort: getInt("BACKEND_PORT", 8000),

		WorkerThreadMultiplier:      getInt("WORKER_THREAD_MULTIPLIER", 2),
		BackpressureQueueMultiplier: getInt("BACKPRESSURE_QUEUE_MULTIPLIER", 4),
		SenderThreadCount:           getInt("SENDER_THREAD_COUNT", 4),

		ColorImgMaxWidth: getInt("COLOR_IMG_MAX_WIDTH", 640),
		ColorImgQuality:  getInt("COLOR_IMG_QUALITY", 80),
		DepthImgMaxWidth: getInt("DEPTH_IMG_MAX_WIDTH", 320),
		DepthImgCompress: getBool("DEPTH_IMG_COMPRESS", true),

		BatchBufferSizeLimit: getInt64("BATCH_BUFFER_SIZE_LIMIT", 1<<20),
		BatchBufferTimeout:   getDuration("BATCH_BUFFER_TIMEOUT", 50*time.Millisecond),

		ScanThreadCount:        getInt("SCAN_THREAD_COUNT", 4),
		SlidingWindowCacheSize: getInt("SLIDING_WINDOW_CACHE_SIZE", 2000),

		PortRangeStart: getInt("PORT_RANGE_START", 10000),
		PortRangeEnd:   getInt("PORT_RANGE_END", 11000),

		MaxCPUPercent:             getFloat("MAX_CPU_PERCENT", 85),
		MaxMemoryPercent:          getFloat("MAX_MEMORY_PERCENT", 90),
		SessionTimeoutSecs:        getInt("SESSION_TIMEOUT_SECONDS", 300),
		MemoryPressureTimeoutSecs: getInt("MEMORY_PRESSURE_TIMEOUT_SECONDS", 30),

		StreamMemoryCeilingBytes: getInt64("STREAM_MEMORY_CEILING_BYTES", 10<<20),

		MongoURI:     os.Getenv("MONGO_URI"),
		MongoAppUser: os.Getenv("MONGO_APP_USER"),
		MongoAppPass: os.Getenv("MONGO_APP_PASSWORD"),

		LogDir:   getStr("LOG_DIR", ""),
		LogLevel: getStr("LOG_LEVEL", "info"),
	}
	return c
}

func getStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}
