// Package database wraps the SurrealDB connection used by the roster server.
//
// Repositories talk to the Database interface rather than the driver so the
// service layer can be tested against mocks. Query results keep the driver's
// per-statement envelope:
//
//	[]interface{}{
//	    map[string]interface{}{"status": "OK", "result": []interface{}{...}},
//	}
//
// Statements that must succeed together go through AtomicBatch, which wraps
// them in BEGIN/COMMIT TRANSACTION and namespaces their variables so two
// statements can both bind $id without colliding.
package database
