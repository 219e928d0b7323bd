// Command labclimated drives fans, heaters, humidifiers and dehumidifiers
// across multiple labs from MQTT sensor readings.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
