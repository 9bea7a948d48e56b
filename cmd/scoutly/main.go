// Command scoutly crawls a website and reports on-page SEO and link-health
// findings. See internal/cli for flag handling and internal/scheduler for
// the crawl engine itself.
package main

import cmd "github.com/rohmanhakim/scoutly/internal/cli"

func main() {
	cmd.Execute()
}
