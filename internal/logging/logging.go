/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging supplies the structured, leveled logger threaded through
// every autoscaler component via context.Context. It wraps
// sigs.k8s.io/controller-runtime's logr plumbing so that components can
// write ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info(...) the same way
// regardless of whether they ever touch a Kubernetes object.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels, mirrored on logr's V(n) scale: higher means chattier.
const (
	// INFO is the default, always-on level for state transitions that an
	// operator cares about (decisions emitted, construction errors).
	INFO = 0
	// DEBUG covers per-tick bookkeeping useful when diagnosing a single
	// service's scaling behavior.
	DEBUG = 1
	// VERBOSE covers per-sample and per-replica detail, only worth paying
	// for when actively troubleshooting.
	VERBOSE = 2
)

// NewDevelopmentLogger returns a human-readable, VERBOSE-enabled logger
// suitable for local runs and tests.
func NewDevelopmentLogger() logr.Logger {
	return zap.New(zap.UseDevMode(true), zap.Level(zapcore.Level(-VERBOSE)))
}

// NewProductionLogger returns a JSON logger at the given verbosity,
// suitable for the control loop running in production.
func NewProductionLogger(verbosity int) logr.Logger {
	return zap.New(zap.UseDevMode(false), zap.Level(zapcore.Level(-verbosity)))
}

// IntoContext attaches logger to ctx so downstream components can recover
// it with ctrl.LoggerFrom.
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return ctrl.LoggerInto(ctx, logger)
}

// FromContext recovers the logger attached by IntoContext, falling back to
// a no-op logger if none was attached (matches ctrl.LoggerFrom's behavior).
func FromContext(ctx context.Context) logr.Logger {
	return ctrl.LoggerFrom(ctx)
}
