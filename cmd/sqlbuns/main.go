// Command sqlbuns is the stock entrypoint: it wires no models of its own,
// so create reports "no ModelLoader configured" until a host
// project links against internal/cli directly with its own model set
// (spec.md §6 "Model loader" is an external collaborator; this binary
// exists so inspectdb and --help work without a host program).
package main

import "sql-buns-migrate/internal/cli"

func main() {
	cli.Execute(cli.Options{})
}
