//go:build devbypass

package middleware

const expiryBypassCompiled = true
