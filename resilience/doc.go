// Package resilience provides the admission gate used to throttle outbound
// requests.
//
// RateLimiter is a cost-aware token bucket built on golang.org/x/time/rate.
// Every admission is charged a cost: Wait and Allow charge the configured
// default, WaitN and AllowN an explicit weight.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    Name: "billing-api", Rate: 5, Burst: 10, DefaultCost: 1,
//	})
//	if err := rl.WaitN(ctx, 4); err != nil {
//	    return err
//	}
package resilience
