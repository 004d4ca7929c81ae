// Command hwtool is a commissioning helper: read a temperature input or
// poke a relay coil on the sensor/relay unit without starting the
// controller.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/goburrow/modbus"
)

func main() {
	address := flag.String("addr", "", "tcp modbus address of the sensor/relay unit")
	slaveID := flag.Int("slave", 1, "modbus slave id")

	inputreg := flag.Int("inputreg", 0, "temperature input register (value scaled by 100)")
	coil := flag.Int("coil", 0, "relay coil")
	value := flag.Int("value", 0, "coil value to write, 1 for on, 0 for off")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*address)
	handler.SlaveId = byte(*slaveID)
	defer handler.Close()
	client := modbus.NewClient(handler)

	var err error
	switch {
	case isFlagPassed("inputreg"):
		var b []byte
		b, err = client.ReadInputRegisters(uint16(*inputreg), 1)
		fmt.Printf("raw response: %# x (length: %d)\n", b, len(b))
		fmt.Printf("temperature: %.2f\n", float64(hwdriver.Decode(b))/100.0)

	case isFlagPassed("coil"):
		if isFlagPassed("value") {
			_, err = client.WriteSingleCoil(uint16(*coil), hwdriver.CoilValue(*value != 0))
		} else {
			var b []byte
			b, err = client.ReadCoils(uint16(*coil), 1)
			fmt.Printf("raw response: %# x (length: %d)\n", b, len(b))
		}

	default:
		flag.Usage()
	}

	if err != nil {
		log.Println("error was: ", err)
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
