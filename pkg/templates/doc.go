// Package templates defines the render contract adapters consume
// (template id + personalization context + channel in, subject/title/body/
// html out) and ships a templ-component-backed implementation.
package templates
