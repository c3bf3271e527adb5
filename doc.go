/*
Package kmem implements the memory-management core of a small kernel in pure Go:
a hashed, lock-striped disk block cache and a per-core physical page allocator
with cross-core stealing and reference counted pages for copy-on-write sharing.
*/
package kmem
