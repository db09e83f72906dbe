package main

import "github.com/veranemoloko/bulk-downloader/internal/cli"

func main() {
	cli.Execute()
}
