package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger en el contexto.
// El orquestador lo usa para propagar un logger "scoped" con run_id y cluster.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extrae el logger del contexto.
// Si no hay logger en el contexto, retorna el singleton.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return L()
}

// FromWithFields extrae el logger del contexto y agrega campos adicionales.
func FromWithFields(ctx context.Context, fields ...zap.Field) *zap.Logger {
	return From(ctx).With(fields...)
}

// SFrom extrae el SugaredLogger del contexto.
func SFrom(ctx context.Context) *zap.SugaredLogger {
	return From(ctx).Sugar()
}
