// Package events broadcasts sync lifecycle notifications to observers such as
// the application shell.
package events
