package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"

	"github.com/victornm/bhasha/internal/errors"
)

// GRPCServerInterceptor logs every call and turns handler panics into internal errors.
func GRPCServerInterceptor() grpc.ServerOption {
	l := slog.Default()

	logOpts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandlerContext(recoverPanic(l)),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpcServerLogger(l), logOpts...),
		recovery.UnaryServerInterceptor(recoveryOpts...),
	)
}

// GRPCStreamInterceptor does the same for streaming calls such as health watches.
func GRPCStreamInterceptor() grpc.ServerOption {
	l := slog.Default()

	return grpc.ChainStreamInterceptor(
		logging.StreamServerInterceptor(grpcServerLogger(l), logging.WithLogOnEvents(logging.FinishCall)),
		recovery.StreamServerInterceptor(recovery.WithRecoveryHandlerContext(recoverPanic(l))),
	)
}

func recoverPanic(l *slog.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "grpc: handler panic",
			"error", fmt.Errorf("%v, stack: %s", p, debug.Stack()),
		)
		return errors.New(errors.CodeInternal)
	}
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}
