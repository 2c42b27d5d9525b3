// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes a structured fault taxonomy, retry logic, circuit breakers, and a recovery
// orchestrator that maps fault kinds to recovery strategies.
//
// The package supports:
//   - Fault classification for external dependencies (Anthropic, OpenAI, feeds, Discord)
//   - Retry logic with exponential backoff and jitter
//   - Circuit breakers with a sliding outcome window per dependency
//   - Recovery plans that chain retries, fallbacks, and a deferred-operation queue
//
// Usage Example:
//
//	cb := circuitbreaker.New("anthropic", circuitbreaker.AIProviderConfig())
//	result, err := cb.Do(ctx, func(ctx context.Context) (any, error) {
//	    return callExternalService(ctx)
//	})
//
//	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func() error {
//	    return performOperation(ctx)
//	})
package resilience
