// Aptrewind - Debian package operation rollback
// Parse. Replay. Rewind.
package main

import "os"

func main() {
	os.Exit(Execute())
}
