// Package device holds the Bluetooth Low Energy value types shared by the
// central core and its transports.
//
// It covers:
//   - Advertisement reports and length-type-value advertising data
//   - Connection handles and HCI status/reason codes
//   - Scan and link parameters
//   - GATT discovery requests, delivered attributes and the resulting
//     service and characteristic records
//   - UUID parsing/normalization and characteristic property naming
package device
