package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed users.sql
var usersSQL string

//go:embed nodes.sql
var nodesSQL string

//go:embed edges.sql
var edgesSQL string

//go:embed schemas.sql
var schemasSQL string

// Function lists for verification.
var UsersFunctions = []string{
	"init_users",
	"merge_user",
	"select_user",
	"user_exists",
	"delete_user",
	"clean_graph",
}

var NodesFunctions = []string{
	"init_nodes",
	"merge_node",
	"update_node_embedding",
	"select_node",
	"select_all_nodes",
	"node_exists",
	"search_nodes_by_similarity",
	"delete_nodes_for_user",
}

var EdgesFunctions = []string{
	"init_edges",
	"merge_edge",
	"select_node_relationships",
	"select_all_edges",
	"delete_edges_for_user",
}

var SchemasFunctions = []string{
	"init_schemas",
	"insert_schema",
	"select_schemas_for_user",
	"schema_exists_by_name",
	"delete_schemas_for_user",
}

// Init initializes the pgvector/pgcrypto extensions the rest of the schema depends on.
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadUsersSql loads user-related SQL functions.
func LoadUsersSql(db *sql.DB, force bool) error {
	return loadOnce(db, "users", usersSQL, UsersFunctions, force)
}

// LoadNodesSql loads node-related SQL functions and installs the nodes
// table sized to the configured embedding dimension.
func LoadNodesSql(db *sql.DB, dimension int, force bool) error {
	if !force {
		exist, err := checkFunctions(db, NodesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing nodes functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	if _, err := db.Exec(nodesSQL); err != nil {
		return fmt.Errorf("error executing nodes SQL: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("SELECT init_nodes(%d);", dimension)); err != nil {
		return fmt.Errorf("error initializing nodes table: %w", err)
	}

	exist, err := checkFunctions(db, NodesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL nodes functions loaded successfully")
	return nil
}

// LoadEdgesSql loads edge-related SQL functions.
func LoadEdgesSql(db *sql.DB, force bool) error {
	return loadOnce(db, "edges", edgesSQL, EdgesFunctions, force)
}

// LoadSchemasSql loads schema-related SQL functions.
func LoadSchemasSql(db *sql.DB, force bool) error {
	return loadOnce(db, "schemas", schemasSQL, SchemasFunctions, force)
}

// LoadAllSql loads every function group in dependency order: users before
// nodes and edges (which carry a foreign key to users), nodes before edges
// (which carry a foreign key to nodes).
func LoadAllSql(db *sql.DB, dimension int, force bool) error {
	if err := LoadUsersSql(db, force); err != nil {
		return err
	}
	if err := LoadNodesSql(db, dimension, force); err != nil {
		return err
	}
	if err := LoadEdgesSql(db, force); err != nil {
		return err
	}
	if err := LoadSchemasSql(db, force); err != nil {
		return err
	}
	return nil
}

// loadOnce execs sqlBody and runs its init_<label>() table setup (unless the
// functions it creates already exist and force is false), then verifies
// every named function was installed.
func loadOnce(db *sql.DB, label, sqlBody string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", label, err)
		}
		if exist {
			return nil
		}
	}

	if _, err := db.Exec(sqlBody); err != nil {
		return fmt.Errorf("error executing %s SQL: %w", label, err)
	}

	if _, err := db.Exec(fmt.Sprintf("SELECT init_%s();", label)); err != nil {
		return fmt.Errorf("error initializing %s table: %w", label, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", label)
	return nil
}

// checkFunctions verifies that all required functions exist in the database.
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
