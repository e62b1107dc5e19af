/*
Package types defines core data structures used throughout orderstress.

# Overview

The types package provides shared type definitions for:
  - HTTP requests and responses
  - Order payloads and scenarios
  - Account and catalogue entities returned by the order API

# Order Types

Order:
  - Ordered list of {id, quantity} items
  - Always encoded as a JSON array, an empty order is []
  - String() gives the compact form printed next to each response

Scenario:
  - Named, ordered list of OrderCase values
  - DefaultScenario() is the built-in mix of valid and invalid orders
*/
package types
