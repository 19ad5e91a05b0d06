// Command sunverify decodes and verifies NTAG 424 DNA SUN (Secure
// Unique NFC Message) URLs, either captured from a scan or read live
// off a tag over a PC/SC reader.
package main

import "github.com/barnettlynn/sdmverify/cmd/sunverify/cmd"

func main() {
	cmd.Execute()
}
