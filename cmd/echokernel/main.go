// Command echokernel runs agents declared in an EchoKernel configuration.
package main

func main() {
	Execute()
}
