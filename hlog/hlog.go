/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hlog is the thin structured-logging facade the core calls
// through. It narrows logrus down to the single-line-appender shape the
// spec treats as an external collaborator, so swapping loggers never
// touches more than Config.Logger.
package hlog

import "github.com/sirupsen/logrus"

// Logger is the single-line appender interface the core depends on.
type Logger interface {
	WithField(key string, value interface{}) *logrus.Entry
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Default returns the package-level logrus logger, used when
// Config.Logger is left nil.
func Default() Logger {
	return logrus.StandardLogger()
}
