// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logger

type Config struct {
	LogDir   string
	BaseName string
	Format   string
	Level    Level

	Compress   bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	EnableStdout    bool
	EnableWarnFile  bool
	EnableErrorFile bool

	Async            bool
	AsyncChannelSize int
}

func DefaultConfig() *Config {
	return &Config{
		LogDir:          "./logs",
		BaseName:        "iohook",
		Format:          "text",
		Level:           InfoLevel,
		MaxSizeMB:       100,
		MaxBackups:      3,
		MaxAgeDays:      7,
		EnableStdout:    true,
		EnableErrorFile: true,
	}
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
