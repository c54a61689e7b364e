// Package mongodb implements the unistore contracts on MongoDB. Abstract
// filters map onto the native operator language; transactions run on driver
// sessions and retry on the server's transient transaction labels.
package mongodb
