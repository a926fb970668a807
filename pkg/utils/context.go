package utils

import (
	"context"

	"agro-booking/internal/data/entity"
)

type contextKey string

const (
	CallerKey contextKey = "caller"
	TokenKey  contextKey = "token"
)

// SetCaller menyimpan caller hasil autentikasi ke context
func SetCaller(ctx context.Context, caller entity.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

func GetCallerFromContext(ctx context.Context) (entity.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(entity.Caller)
	return caller, ok
}

// GetTokenFromContext mendapatkan token dari context
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// SetTokenContext menambahkan token ke context
func SetTokenContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}
