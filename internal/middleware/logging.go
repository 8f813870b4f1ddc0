package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc"
)

// RequestLogger logs every HTTP request once it completes
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler runs after this middleware returns
			status = statusOf(err)
		}

		clientInfo := GetClientInfoFromContext(c.UserContext())
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"request_id", clientInfo.RequestID,
			"ip", clientInfo.IPAddress,
			"user", clientInfo.Username,
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request failed", append(attrs, "error", err)...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}

// LoggingInterceptor logs gRPC admin calls
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		clientInfo := GetClientInfoFromContext(ctx)
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"duration", time.Since(start),
			"ip", clientInfo.IPAddress,
			"user_agent", clientInfo.UserAgent,
		}
		if err != nil {
			logger.Error("grpc call failed", append(attrs, "error", err)...)
		} else {
			logger.Debug("grpc call completed", attrs...)
		}
		return resp, err
	}
}
