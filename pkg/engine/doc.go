// Package engine materializes browser sessions that present a synthesized
// identity.
//
// The package is built around two pieces:
//
//  1. Engine: the interface the orchestrator drives (materialize, verify,
//     navigate, query, reposition, zoom, teardown)
//  2. PlaywrightEngine: the production implementation on top of
//     playwright-go persistent Chromium contexts
//
// # Session Lifecycle
//
//  1. Materialize: launch a persistent context in the instance's profile
//     directory with the identity's user agent, locale, timezone and screen,
//     then install the fingerprint and stealth init scripts
//  2. Verify: load about:blank, evaluate navigator.userAgent and read the
//     location; any failure means the session is unusable
//  3. Use: Navigate, Query, Reposition and SetZoom
//  4. Teardown: close the context; a second call is a no-op
//
// # Navigation Pacing
//
// Navigate follows a human-like sequence: an optional referrer, a randomized
// navigation timeout, a pointer trajectory and pause before loading, a pause
// after the load event and a scroll pass. All timings live in Behavior so
// tests can zero them.
//
// # Example Usage
//
//	eng := engine.NewPlaywrightEngine(engine.Options{Headless: true})
//	if err := eng.Initialize(); err != nil {
//	    return err
//	}
//	defer eng.Shutdown()
//
//	h, err := eng.Materialize(ctx, engine.Spec{InstanceID: "1", Identity: id, Placement: rect})
//	if err != nil {
//	    return err
//	}
//	if err := eng.Verify(ctx, h); err != nil {
//	    _ = eng.Teardown(ctx, h)
//	    return err
//	}
//	err = eng.Navigate(ctx, h, "https://example.com")
package engine
