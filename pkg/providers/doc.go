// Package providers contains the built-in provisioning providers: the
// environment variable exporter, the virtualenv bootstrapper, the package
// installer family (Debian, RPM, pip) and the git checkout provider.
//
// Providers express their work as a sequence of idempotent shell steps run
// through an engine.Shell; they never perform I/O of their own. Each
// provider is constructed from a single parameter mapping and lives for
// exactly one provisioning run.
package providers
