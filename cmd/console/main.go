package main

import "evalconsole/internal/app/server"

func main() {
	server.Run()
}
