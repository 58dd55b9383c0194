/*Package interval implements interval-union operations over genomic
  coordinates, used to restrict which tags take part in clustering.
  (Note the 'union'.  Overlapping regions are merged, not tracked separately;
  a tag only needs to know whether it touches any of them.)
  Regions come from BED files and from samtools-style region strings.  Every
  position is assumed to fit in a PosType.
*/
package interval
