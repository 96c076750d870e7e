// Package pages defines the components and pages of the documentation
// site, rendered through package render from the templates in web.
package pages
