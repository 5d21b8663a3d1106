// Package tripmanager coordinates one long-running trip manager workflow
// instance per trip key.
//
// The root Service wires the orchestration host, the coordinator, the queue
// and HTTP triggers, and the optional active-trip index from a Config:
//
//	srv, err := tripmanager.New(ctx, tripmanager.WithConfig(cfg))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
//
// Callers that embed the coordinator directly use Service.Coordinator.
package tripmanager
