package logger

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
)

// WithRun returns a child logger that stamps every entry with the run ID, so
// entries from consecutive collection runs can be correlated in one log
// stream.
func WithRun(runID string) *zap.Logger {
	return GetLogger().With(zap.String("run_id", runID))
}

// WithInvocation stamps the logger with the Lambda request ID when the
// context carries one. Outside Lambda it returns the logger unchanged.
func WithInvocation(ctx context.Context, log *zap.Logger) *zap.Logger {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return log.With(zap.String("aws_request_id", lc.AwsRequestID))
	}
	return log
}
