// Package printer implements the print-job domain on top of the message store.
//
// A printer publishes one JSON object per printed component under a base
// topic (default "printer/components"):
//
//	printer/components/bracket  {"component_name":"bracket","status":"printing",
//	                             "total_layers":120,"current_layer_number":42,
//	                             "time":1760778000,"start_time":1760770000}
//
// The Service turns those messages into ComponentState values, records a
// history row and a telemetry point for each one, and implements the
// dashboard commands (cancel a print, patch a component, raw publish).
//
// # Cancelling a print
//
// CancelPrint marks the component cancelled in the store and then publishes
// the full set of known components, keyed by name, to the base topic:
//
//	printer/components  {"bracket":{...,"status":"cancelled"},"hinge":{...}}
//
// The printer firmware listens on the base topic and stops any job whose
// status is no longer "printing".
//
// # Usage
//
//	svc, err := printer.NewService(printer.Deps{
//	    Store:     messages,
//	    Publisher: mqttClient,
//	    History:   printer.NewSQLiteHistoryRepository(db.DB),
//	    Logger:    log,
//	    BaseTopic: cfg.Printer.BaseTopic,
//	})
//	mqttClient.Follow(mqtt.Feed{Filter: svc.SubscriptionFilter(), QoS: 1, Handler: svc.HandleMessage})
//
//	err = svc.CancelPrint(ctx, "bracket")
package printer
