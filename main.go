// njail is a process jailer: it runs an untrusted command inside a
// freshly constructed Linux namespace sandbox, either once, repeatedly,
// or per accepted TCP connection.
package main

import (
	"os"

	"njail-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
