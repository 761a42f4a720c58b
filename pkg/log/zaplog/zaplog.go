// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package zaplog is a log sink writing one JSON object per entry via zap, so
// CI can ingest campaign logs without scraping console text.
package zaplog

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teamsatosys/mintfuzz/pkg/log"
	"github.com/teamsatosys/mintfuzz/pkg/log/flags"
)

const ZapLogIdent = "zapLog"

type zapLog struct {
	zl   *zap.Logger
	next log.StackableLogger
}

var _ log.StackableLogger = (*zapLog)(nil)

// AddZapLog adds a sink writing JSON lines to path (zap output paths, so
// "stdout"/"stderr" also work). Entries already in memory are replayed.
func AddZapLog(path string) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.TimeKey = "t"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("building zap logger for %s: %w", path, err)
	}
	return AddLogger(zl)
}

// AddLogger adds a sink using an already-built zap logger.
func AddLogger(zl *zap.Logger) error {
	return log.AddLogger(&zapLog{zl: zl}, true)
}

func level(f flags.Flag) zapcore.Level {
	switch {
	case f&flags.Fatal != 0:
		return zapcore.ErrorLevel
	case f&flags.Verbose != 0:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func (z *zapLog) AddEntry(e log.LogEntry) {
	if e.Flags&flags.NotFile == 0 {
		if ce := z.zl.Check(level(e.Flags), e.Text()); ce != nil {
			ce.Time = e.Time
			fields := []zap.Field{}
			if e.Flags&flags.Operator != 0 {
				fields = append(fields, zap.Bool("operator", true))
			}
			attrs := log.Attrs()
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fields = append(fields, zap.Any(k, attrs[k]))
			}
			ce.Write(fields...)
		}
	}
	if z.next != nil {
		z.next.AddEntry(e)
	}
}

func (z *zapLog) ForwardTo(sl log.StackableLogger) {
	if z.next == nil || sl == nil {
		z.next = sl
	} else {
		panic("next already set")
	}
}

func (*zapLog) Ident() string               { return ZapLogIdent }
func (z *zapLog) Next() log.StackableLogger { return z.next }

func (z *zapLog) Finalize() {
	_ = z.zl.Sync()
	if z.next != nil {
		z.next.Finalize()
	}
}
